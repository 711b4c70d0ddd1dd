package api

import "github.com/gofiber/fiber/v3"

// ErrInvalidTokenAddress is returned for a malformed token path parameter.
var ErrInvalidTokenAddress = fiber.NewError(fiber.StatusBadRequest, "invalid token address")

// ErrTokenNotInPool maps ErrUnknownToken to a 404.
var ErrTokenNotInPool = fiber.NewError(fiber.StatusNotFound, "token is not part of the pool pair")

// ErrMetadataPending maps ErrMetadataUnavailable to a 409: the query is
// well-formed but the asynchronous resolution has not landed yet.
var ErrMetadataPending = fiber.NewError(fiber.StatusConflict, "token metadata is not resolved yet")

// ErrQueryFailed signals a generic server-side failure.
var ErrQueryFailed = fiber.NewError(fiber.StatusInternalServerError, "query failed")
