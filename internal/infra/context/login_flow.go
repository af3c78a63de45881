package context

import (
	"context"
)

const contextKeyLoginFlow = contextKey("loginFlow")

// LoginFlow names the entry point that started a login.
type LoginFlow string

const (
	LoginFlowPassword LoginFlow = "password"
	LoginFlowPIN      LoginFlow = "pin"
	LoginFlowAuto     LoginFlow = "auto"
)

// LoginFlowFromContext extracts the login flow, defaulting to LoginFlowPassword.
func LoginFlowFromContext(ctx context.Context) LoginFlow {
	flow, ok := ctx.Value(contextKeyLoginFlow).(LoginFlow)
	if !ok {
		return LoginFlowPassword
	}

	return flow
}

// WithLoginFlow tags ctx with the flow that triggered the login.
func WithLoginFlow(ctx context.Context, flow LoginFlow) context.Context {
	return context.WithValue(ctx, contextKeyLoginFlow, flow)
}
