package syncsdk

import (
	"context"
	"strconv"
	"strings"
)

// RowsAPI covers the row endpoints advertised by a table resource
type RowsAPI struct {
	api  *apiClient
	urls *endpoints
}

// List fetches every row under a data URI
func (r *RowsAPI) List(ctx context.Context, dataURI string) ([]*RowResource, error) {
	var list RowResourceList
	resp, err := r.api.R(ctx, dataURI).
		SetSuccessResult(&list).
		Get(dataURI)
	if err := r.api.check(resp, err, "rows list"); err != nil {
		return nil, err
	}
	return list.Rows, nil
}

// Diff fetches the rows changed since dataETag
func (r *RowsAPI) Diff(ctx context.Context, diffURI string, dataETag string) ([]*RowResource, error) {
	var list RowResourceList
	resp, err := r.api.R(ctx, diffURI).
		SetQueryParam("data_etag", dataETag).
		SetSuccessResult(&list).
		Get(diffURI)
	if err := r.api.check(resp, err, "rows diff"); err != nil {
		return nil, err
	}
	return list.Rows, nil
}

// Put inserts or updates a row. Never retried here.
func (r *RowsAPI) Put(ctx context.Context, dataURI string, row *Row) (*RowResource, error) {
	target, err := r.urls.Row(dataURI, row.RowID)
	if err != nil {
		return nil, err
	}

	var out *RowResource
	resp, err := r.api.R(ctx, target).
		SetRetryCount(0).
		SetBody(row).
		SetSuccessResult(&out).
		Put(target)
	if err := r.api.check(resp, err, "row put"); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &TransportError{Op: "row put", Err: ErrEmptyResponse}
	}
	return out, nil
}

// Delete deletes a row and returns the table data tag the server reported in the
// plain text body. The tag may be empty when the server did not confirm it.
func (r *RowsAPI) Delete(ctx context.Context, dataURI string, rowID string) (string, error) {
	target, err := r.urls.Row(dataURI, rowID)
	if err != nil {
		return "", err
	}

	resp, err := r.api.R(ctx, target).
		SetRetryCount(0).
		Delete(target)
	if err := r.api.check(resp, err, "row delete"); err != nil {
		return "", err
	}
	return parseBareTag(resp.String()), nil
}

// parseBareTag accepts the tag either raw or as a JSON string literal
func parseBareTag(body string) string {
	body = strings.TrimSpace(body)
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' {
		if s, err := strconv.Unquote(body); err == nil {
			return s
		}
	}
	if body == "null" {
		return ""
	}
	return body
}
