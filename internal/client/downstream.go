package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
)

// Downstream is the HTTP implementation of the engine's Connector. The
// receiver deduplicates on book_id, so every call is safe to repeat.
type Downstream struct {
	baseURL string
	hc      *http.Client
}

func NewDownstream(baseURL string) *Downstream {
	return &Downstream{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *Downstream) Create(ctx context.Context, p domain.CreatePayload) error {
	return d.post(ctx, d.baseURL+"/bookings", p)
}

func (d *Downstream) Update(ctx context.Context, p domain.CreatePayload) error {
	return d.do(ctx, http.MethodPut, d.baseURL+"/bookings/"+url.PathEscape(p.BookID), p)
}

// Cancel returns domain.ErrAlreadyCanceled when the receiver reports the
// booking as already canceled (409); other failures are opaque.
func (d *Downstream) Cancel(ctx context.Context, bookID, canceledBy string) error {
	body := map[string]string{"canceled_by": canceledBy}
	err := d.post(ctx, d.baseURL+"/bookings/"+url.PathEscape(bookID)+"/cancel", body)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		return domain.ErrAlreadyCanceled
	}
	return err
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("downstream responded %d: %s", e.code, e.body)
}

func (d *Downstream) post(ctx context.Context, u string, v any) error {
	return d.do(ctx, http.MethodPost, u, v)
}

func (d *Downstream) do(ctx context.Context, method, u string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return &statusError{code: res.StatusCode, body: string(body)}
	}
	return nil
}
