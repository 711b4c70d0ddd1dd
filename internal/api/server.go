// Package api exposes the pool's read-only query surface over HTTP, plus the
// administrative metadata refresh.
package api

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"swapLedger/internal/amm"
)

// Server serves balance, metadata and ratio queries against the pool.
type Server struct {
	app    *fiber.App
	pool   *amm.Pool
	logger *zap.Logger
}

func NewServer(pool *amm.Pool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app:    fiber.New(),
		pool:   pool,
		logger: logger,
	}

	s.app.Get("/v1/balance/:token", s.handleBalance)
	s.app.Get("/v1/metadata/:token", s.handleMetadata)
	s.app.Get("/v1/ratio", s.handleRatio)
	s.app.Post("/v1/metadata/:token/refresh", s.handleRefresh)

	return s
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleBalance(c fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}

	balance, err := s.pool.Balance(token)
	if err != nil {
		return s.mapPoolError(err)
	}
	return c.JSON(fiber.Map{
		"token":   token.Hex(),
		"balance": balance.Dec(),
	})
}

func (s *Server) handleMetadata(c fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}

	meta, err := s.pool.Metadata(token)
	if err != nil {
		return s.mapPoolError(err)
	}
	return c.JSON(meta)
}

func (s *Server) handleRatio(c fiber.Ctx) error {
	ratio, err := s.pool.Ratio()
	if err != nil {
		return s.mapPoolError(err)
	}
	return c.JSON(fiber.Map{"ratio": ratio.Dec()})
}

func (s *Server) handleRefresh(c fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}

	if _, err := s.pool.RequestMetadata(context.Background(), token); err != nil {
		return s.mapPoolError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func parseToken(c fiber.Ctx) (common.Address, error) {
	raw := c.Params("token")
	if !common.IsHexAddress(raw) {
		return common.Address{}, ErrInvalidTokenAddress
	}
	return common.HexToAddress(raw), nil
}

func (s *Server) mapPoolError(err error) error {
	switch {
	case errors.Is(err, amm.ErrUnknownToken):
		return ErrTokenNotInPool
	case errors.Is(err, amm.ErrMetadataUnavailable):
		return ErrMetadataPending
	default:
		s.logger.Error("pool query failed", zap.Error(err))
		return ErrQueryFailed
	}
}
