package handler

import (
	"context"

	"github.com/aqiexplorer/aqiexplorer/internal/api/middleware"
)

// GetSubject returns the operator authenticated for this request.
func GetSubject(ctx context.Context) string {
	return middleware.GetSubject(ctx)
}
