package handler // HTTP handlers of the worker process

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is the liveness endpoint. It returns "ok" as long as the process
// is serving HTTP.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// ReadinessHandler runs every registered probe and answers 200 only when
// all of them pass.
type ReadinessHandler struct {
    probes  map[string]Probe
    timeout time.Duration
}

func NewReadinessHandler(timeout time.Duration) *ReadinessHandler {
    if timeout <= 0 {
        timeout = 2 * time.Second
    }
    return &ReadinessHandler{probes: map[string]Probe{}, timeout: timeout}
}

// Add registers a probe under name, replacing any previous one.
func (h *ReadinessHandler) Add(name string, p Probe) {
    h.probes[name] = p
}

type readinessResponse struct {
    Status string            `json:"status"`
    Checks map[string]string `json:"checks"`
}

// Ready handles GET /readyz.
func (h *ReadinessHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
    defer cancel()

    names := make([]string, 0, len(h.probes))
    for name := range h.probes {
        names = append(names, name)
    }
    sort.Strings(names)

    resp := readinessResponse{Status: "ok", Checks: make(map[string]string, len(names))}
    code := http.StatusOK
    for _, name := range names {
        if err := h.probes[name](ctx); err != nil {
            resp.Checks[name] = err.Error()
            resp.Status = "unavailable"
            code = http.StatusServiceUnavailable
            continue
        }
        resp.Checks[name] = "ok"
    }
    return c.JSON(code, resp)
}
