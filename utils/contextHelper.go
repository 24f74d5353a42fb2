package utils

import "context"

type contextKey string

const (
	ContextKeyUsername      contextKey = "Username"
	ContextKeyRole          contextKey = "Role"
	ContextKeyCorrelationId contextKey = "CorrelationId"
	// ContextKeyJobName is set by job runners so store and lock errors can name the job.
	ContextKeyJobName contextKey = "JobName"
)

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ContextKeyUsername)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ContextKeyCorrelationId)
}

func GetJobNameFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ContextKeyJobName)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ContextKeyUsername, username)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationId, correlationId)
}

func SetJobNameInContext(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, ContextKeyJobName, job)
}
