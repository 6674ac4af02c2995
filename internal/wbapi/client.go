package wbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL points at the production supplies API.
const DefaultBaseURL = "https://supplies-api.wildberries.ru"

// errorMessages maps upstream rejection codes to the fixed user-facing text.
var errorMessages = map[int]string{
	http.StatusBadRequest:          "Ошибка: Неверный запрос. Проверьте правильность параметров.",
	http.StatusUnauthorized:        "Ошибка: Пользователь не авторизован. Проверьте ваш API ключ.",
	http.StatusForbidden:           "Ошибка: Доступ запрещён. У вас нет прав на выполнение этого действия.",
	http.StatusNotFound:            "Ошибка: Адрес не найден. Проверьте правильность параметров.",
	http.StatusTooManyRequests:     "Ошибка: Слишком много запросов. Попробуйте позже.",
	http.StatusInternalServerError: "Ошибка: Внутренняя ошибка сервера. Повторите запрос позднее.",
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supplies api: status %d: %s", e.Code, e.Message)
}

// StatusMessage returns the fixed human-readable text for an upstream status.
func StatusMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "OK"
}

func newStatusError(code int) *StatusError {
	return &StatusError{Code: code, Message: StatusMessage(code)}
}

// Warehouse is one catalog entry as returned by the directory endpoint.
type Warehouse struct {
	ID   int64  `json:"ID"`
	Name string `json:"name"`
}

// Coefficient is one acceptance coefficient for a (warehouse, box type, date)
// combination. Value -1 means acceptance is not available.
type Coefficient struct {
	WarehouseID   int64   `json:"warehouseID"`
	WarehouseName string  `json:"warehouseName"`
	Value         float64 `json:"coefficient"`
	BoxTypeName   string  `json:"boxTypeName"`
	Date          string  `json:"date"`
}

// Client talks to the supplies API. All requests carry the caller-supplied
// credential in the Authorization header and pass a shared rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a client. ratePerSec bounds outbound request rate; zero or
// negative disables limiting.
func New(baseURL string, ratePerSec int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
	}
}

// Ping checks whether the credential is accepted by the API liveness
// endpoint. A single round trip, no retries.
func (c *Client) Ping(ctx context.Context, apiKey string) (bool, error) {
	resp, err := c.get(ctx, apiKey, "/ping", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Warehouses fetches the full warehouse directory.
func (c *Client) Warehouses(ctx context.Context, apiKey string) ([]Warehouse, error) {
	resp, err := c.get(ctx, apiKey, "/api/v1/warehouses", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode)
	}

	var warehouses []Warehouse
	if err := json.NewDecoder(resp.Body).Decode(&warehouses); err != nil {
		return nil, fmt.Errorf("decode warehouses: %w", err)
	}
	return warehouses, nil
}

// Coefficients fetches acceptance coefficients for the given warehouse ids.
// The returned order is the upstream order.
func (c *Client) Coefficients(ctx context.Context, apiKey string, warehouseIDs []int64) ([]Coefficient, error) {
	ids := make([]string, 0, len(warehouseIDs))
	for _, id := range warehouseIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	params := url.Values{"warehouseIDs": {strings.Join(ids, ",")}}

	resp, err := c.get(ctx, apiKey, "/api/v1/acceptance/coefficients", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode)
	}

	var coefficients []Coefficient
	if err := json.NewDecoder(resp.Body).Decode(&coefficients); err != nil {
		return nil, fmt.Errorf("decode coefficients: %w", err)
	}
	return coefficients, nil
}

func (c *Client) get(ctx context.Context, apiKey, path string, params url.Values) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	return resp, nil
}
