package observability

import "context"

func Setup(ctx context.Context, serviceName, logLevel, otlpEndpoint string) (func(context.Context) error, error) {
	InitLogger(logLevel)
	return InitTracing(ctx, serviceName, otlpEndpoint)
}
