package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
)

// OrderAPI is the set of server commands the engine relies on. The server is
// authoritative for every one of them.
type OrderAPI interface {
	CreateOrGetOrder(ctx context.Context, tableID string) (*models.Order, error)
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	AddItems(ctx context.Context, orderID string, items []models.ItemQty, batchID string) error
	SetLineQuantity(ctx context.Context, orderID, lineID string, qty int) error
	PartialCancel(ctx context.Context, lineID string, qty int, reason string) (int, error)
	DispatchKitchenNotification(ctx context.Context, batch models.NotificationBatch) error
	GetProgress(ctx context.Context, orderID string) ([]models.ProgressSnapshot, error)
	ListVoidEvents(ctx context.Context, tableID string, day time.Time) ([]models.VoidHistoryRow, error)
}

const activeOrderExclusion = "PAID,CANCELLED,MERGED"

// PosConfig holds the POS server connection settings
type PosConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// PosClient talks to the POS backend over HTTP.
type PosClient struct {
	config     *PosConfig
	httpClient *http.Client
}

// NewPosClient creates a new instance of PosClient
func NewPosClient(config *PosConfig) *PosClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PosClient{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer that is neither LOCKED nor NOT_FOUND. A 400 is
// only read as LOCKED by the row writes, see rowWriteError.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("POS API error (status %d): %s", e.StatusCode, e.Body)
}

// rowWriteError maps the 400 the server answers for a row in production onto
// ErrLocked.
func rowWriteError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrLocked, apiErr.Body)
	}
	return err
}

// wire shapes

type wireMenuItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireOrderItem struct {
	ID         string        `json:"id"`
	MenuItemID string        `json:"menuItemId"`
	MenuItem   *wireMenuItem `json:"menuItem"`
	Quantity   int           `json:"quantity"`
	Note       string        `json:"note"`
	Status     string        `json:"status"`
}

type wireTable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireOrder struct {
	ID         string          `json:"id"`
	TableID    string          `json:"tableId"`
	Table      *wireTable      `json:"table"`
	Status     string          `json:"status"`
	GuestCount int             `json:"guestCount"`
	Customer   json.RawMessage `json:"customer"`
	Items      []wireOrderItem `json:"items"`
}

func (w wireOrder) toModel() models.Order {
	o := models.Order{
		ID:         w.ID,
		TableID:    w.TableID,
		Status:     models.NormalizeOrderStatus(w.Status),
		GuestCount: w.GuestCount,
	}
	if w.Table != nil {
		if o.TableID == "" {
			o.TableID = w.Table.ID
		}
		o.TableName = w.Table.Name
	}
	if len(w.Customer) > 0 && string(w.Customer) != "null" {
		var name string
		if err := json.Unmarshal(w.Customer, &name); err == nil {
			o.Customer = name
		} else {
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(w.Customer, &obj); err == nil {
				o.Customer = obj.Name
			}
		}
	}

	rows := make([]models.OrderItemLine, 0, len(w.Items))
	for _, it := range w.Items {
		if strings.EqualFold(it.Status, "CANCELLED") {
			continue
		}
		line := models.OrderItemLine{
			LineID:       it.ID,
			MenuItemID:   it.MenuItemID,
			RequestedQty: it.Quantity,
			Note:         it.Note,
		}
		if it.MenuItem != nil {
			if line.MenuItemID == "" {
				line.MenuItemID = it.MenuItem.ID
			}
			line.Name = it.MenuItem.Name
		}
		rows = append(rows, line)
	}
	o.Lines = models.FoldLines(rows)
	return o
}

// CreateOrGetOrder returns the table's active order, creating a dine-in order
// when there is none.
func (pc *PosClient) CreateOrGetOrder(ctx context.Context, tableID string) (*models.Order, error) {
	var existing []wireOrder
	q := url.Values{}
	q.Set("tableId", tableID)
	q.Set("excludeStatus", activeOrderExclusion)
	q.Set("page", "1")
	q.Set("limit", "1")
	if err := pc.doJSON(ctx, http.MethodGet, "/orders", q, nil, &existing); err != nil {
		return nil, err
	}
	for _, w := range existing {
		o := w.toModel()
		if o.TableID == tableID || o.TableID == "" {
			o.TableID = tableID
			return &o, nil
		}
	}

	var created wireOrder
	body := map[string]interface{}{
		"tableId":   tableID,
		"orderType": "DINE_IN",
		"items":     []models.ItemQty{},
	}
	if err := pc.doJSON(ctx, http.MethodPost, "/orders", nil, body, &created); err != nil {
		return nil, err
	}
	o := created.toModel()
	if o.TableID == "" {
		o.TableID = tableID
	}
	utils.InfoLogger.WithFields(logrus.Fields{"table": tableID, "order": o.ID}).Info("Created order")
	return &o, nil
}

// ListActiveOrders returns every order that is neither paid, cancelled nor merged.
func (pc *PosClient) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	var rows []wireOrder
	q := url.Values{}
	q.Set("excludeStatus", activeOrderExclusion)
	q.Set("page", "1")
	q.Set("limit", "200")
	if err := pc.doJSON(ctx, http.MethodGet, "/orders", q, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(rows))
	for _, w := range rows {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (pc *PosClient) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var w wireOrder
	if err := pc.doJSON(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &w); err != nil {
		return nil, err
	}
	o := w.toModel()
	return &o, nil
}

func (pc *PosClient) AddItems(ctx context.Context, orderID string, items []models.ItemQty, batchID string) error {
	body := map[string]interface{}{"items": items}
	if batchID != "" {
		body["batchId"] = batchID
	}
	return pc.doJSON(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/items", nil, body, nil)
}

// SetLineQuantity fails with ErrLocked or ErrNotFound when the row can no
// longer be changed this way.
func (pc *PosClient) SetLineQuantity(ctx context.Context, orderID, lineID string, qty int) error {
	path := fmt.Sprintf("/orders/%s/items/%s/qty", url.PathEscape(orderID), url.PathEscape(lineID))
	return rowWriteError(pc.doJSON(ctx, http.MethodPatch, path, nil, map[string]int{"quantity": qty}, nil))
}

// PartialCancel asks the server to release qty notified units of a line. The
// returned quantity is what the server actually released.
func (pc *PosClient) PartialCancel(ctx context.Context, lineID string, qty int, reason string) (int, error) {
	body := map[string]interface{}{
		"itemId": lineID,
		"qty":    qty,
		"reason": reason,
	}
	var resp struct {
		ConfirmedQty *int `json:"confirmedQty"`
	}
	if err := pc.doJSON(ctx, http.MethodPatch, "/orderitems/cancel-partial", nil, body, &resp); err != nil {
		return 0, rowWriteError(err)
	}
	if resp.ConfirmedQty == nil {
		// older servers answer with the updated row only; the refetch corrects it
		utils.InfoLogger.WithField("line", lineID).Warn("cancel-partial response without confirmedQty")
		return qty, nil
	}
	return *resp.ConfirmedQty, nil
}

func (pc *PosClient) DispatchKitchenNotification(ctx context.Context, batch models.NotificationBatch) error {
	body := map[string]interface{}{
		"batchId":     batch.BatchID,
		"items":       batch.Items,
		"priority":    batch.Priority,
		"sourceActor": batch.SourceActor,
	}
	if batch.Note != "" {
		body["note"] = batch.Note
	}
	if batch.TableName != "" {
		body["tableName"] = batch.TableName
	}
	path := fmt.Sprintf("/kitchen/orders/%s/notify-items", url.PathEscape(batch.OrderID))
	return pc.doJSON(ctx, http.MethodPost, path, nil, body, nil)
}

func (pc *PosClient) GetProgress(ctx context.Context, orderID string) ([]models.ProgressSnapshot, error) {
	var rows []models.ProgressSnapshot
	path := fmt.Sprintf("/kitchen/orders/%s/progress", url.PathEscape(orderID))
	if err := pc.doJSON(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVoidEvents returns the voids recorded for a table on the given day.
func (pc *PosClient) ListVoidEvents(ctx context.Context, tableID string, day time.Time) ([]models.VoidHistoryRow, error) {
	var rows []models.VoidHistoryRow
	q := url.Values{}
	q.Set("date", day.Format("2006-01-02"))
	path := "/void-events/by-table/" + url.PathEscape(tableID)
	if err := pc.doJSON(ctx, http.MethodGet, path, q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (pc *PosClient) doJSON(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := strings.TrimRight(pc.config.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if pc.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pc.config.AccessToken)
	}

	utils.InfoLogger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("POS request")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusLocked:
		return fmt.Errorf("%s %s: %w: %s", method, path, ErrLocked, strings.TrimSpace(string(respBody)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := decodeBody(respBody, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}

// decodeBody accepts both a bare payload and one wrapped in {"data": ...}.
func decodeBody(body []byte, out interface{}) error {
	body = bytes.TrimSpace(body)
	if out == nil || len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			body = env.Data
		}
	}
	return json.Unmarshal(body, out)
}
