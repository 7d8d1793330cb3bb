package router

import (
	"context"
	"strconv"
)

func bg() context.Context { return context.Background() }

func idPath(id uint) string { return strconv.FormatUint(uint64(id), 10) }
