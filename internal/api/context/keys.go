package context

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Key string

const (
	Params    Key = "params"
	RequestID Key = "request_id"
)

// Param returns the named route parameter injected by the router.
func Param(ctx context.Context, name string) string {
	ps, _ := ctx.Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
