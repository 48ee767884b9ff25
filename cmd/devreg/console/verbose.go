package console

import "context"

type verboseKey struct{}

// SetVerbose marks ctx so commands print raw register bytes.
func SetVerbose(parent context.Context, value bool) context.Context {
	return context.WithValue(parent, verboseKey{}, value)
}

func IsVerbose(ctx context.Context) bool {
	val, _ := ctx.Value(verboseKey{}).(bool)
	return val
}
