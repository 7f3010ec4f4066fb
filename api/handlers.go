package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/petabite/shiptivitas-2/domain"
)

const (
	routeClients = "/api/v1/clients"
	routeClient  = "/api/v1/clients/:id"
)

var invalidBody = messageResponse{
	Message:     "Invalid body provided.",
	LongMessage: "Body must be a JSON object with optional status and priority fields.",
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, clients Clients, store Pinger, metrics *Metrics, logger *log.Logger) {
	e.Use(metrics.middleware())

	e.GET("/", root)
	e.GET("/healthz", healthz(store))
	e.GET("/metrics", metrics.handler())
	e.GET(routeClients, listClients(clients, logger))
	e.GET(routeClient, getClient(clients, logger))
	e.PUT(routeClient, updateClient(clients, metrics, logger), gunzipBody())
}

func root(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: greeting})
}

func healthz(store Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Errorf("healthz: %v", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listClients(clients Clients, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, routeClients)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		status := c.QueryParam("status")
		metrics.SetStatusFilter(status)

		fetchStart := time.Now()
		list, listErr := clients.List(ctx, status)
		metrics.ObserveStore(time.Since(fetchStart))
		if listErr != nil {
			return respondError(c, metrics, listErr)
		}
		metrics.SetClientsReturned(len(list))
		return encode(c, metrics, list)
	}
}

func getClient(clients Clients, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, routeClient)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		client, getErr := clients.Get(ctx, c.Param("id"))
		metrics.ObserveStore(time.Since(fetchStart))
		if getErr != nil {
			return respondError(c, metrics, getErr)
		}
		metrics.SetClientsReturned(1)
		return encode(c, metrics, client)
	}
}

func updateClient(clients Clients, counters *Metrics, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, routeClient)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id := c.Param("id")
		lookupStart := time.Now()
		_, idErr := clients.Get(ctx, id)
		lookup := time.Since(lookupStart)
		metrics.ObserveStore(lookup)
		if idErr != nil {
			return respondError(c, metrics, idErr)
		}

		body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, putClientMaxSize))
		if readErr != nil {
			metrics.SetErrorStage("read_body")
			return c.JSON(http.StatusBadRequest, invalidBody)
		}
		var req updateClientRequest
		if len(bytes.TrimSpace(body)) > 0 {
			if decErr := sonic.ConfigStd.Unmarshal(body, &req); decErr != nil {
				metrics.SetErrorStage("decode_body")
				return c.JSON(http.StatusBadRequest, invalidBody)
			}
		}
		status := ""
		if req.Status != nil {
			status = *req.Status
		}
		upd, updErr := domain.NewUpdate(status, string(req.Priority))
		if updErr != nil {
			return respondError(c, metrics, updErr)
		}

		storeStart := time.Now()
		res, updErr := clients.Update(ctx, id, upd)
		metrics.ObserveStore(lookup + time.Since(storeStart))
		if updErr != nil {
			return respondError(c, metrics, updErr)
		}
		metrics.SetUpdateMode(res.Mode)
		counters.observeUpdate(res.Mode)
		metrics.SetClientsReturned(len(res.Clients))
		return encode(c, metrics, res.Clients)
	}
}

func startRequest(c echo.Context, logger *log.Logger, route string) (*clientRequestMetrics, context.Context) {
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	metrics, spanCtx := newClientRequestMetrics(c.Request().Context(), logger, route, requestID)
	c.SetRequest(c.Request().WithContext(spanCtx))
	return metrics, spanCtx
}

// respondError answers validation failures with 400 and their payload, and
// anything else with a generic 500.
func respondError(c echo.Context, metrics *clientRequestMetrics, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		metrics.SetErrorStage("validation")
		return c.JSON(http.StatusBadRequest, messageResponse{Message: vErr.Message, LongMessage: vErr.LongMessage})
	}
	metrics.SetErrorStage("storage")
	metrics.Fail(err)
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Internal server error."})
}

func encode(c echo.Context, metrics *clientRequestMetrics, v any) error {
	encodeStart := time.Now()
	err := c.JSON(http.StatusOK, v)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}
