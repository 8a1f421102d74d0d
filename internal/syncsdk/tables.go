package syncsdk

import (
	"context"
	"fmt"
)

// TablesAPI covers table level endpoints
type TablesAPI struct {
	api  *apiClient
	urls *endpoints
}

// List returns every table resource in server order
func (t *TablesAPI) List(ctx context.Context) ([]*TableResource, error) {
	var list TableResourceList
	resp, err := t.api.R(ctx, t.urls.Tables()).
		SetSuccessResult(&list).
		Get(t.urls.Tables())
	if err := t.api.check(resp, err, "tables list"); err != nil {
		return nil, err
	}
	return list.Tables, nil
}

// Get fetches one table resource
func (t *TablesAPI) Get(ctx context.Context, tableID string) (*TableResource, error) {
	var tr *TableResource
	target := t.urls.Table(tableID)
	resp, err := t.api.R(ctx, target).
		SetSuccessResult(&tr).
		Get(target)
	if err := t.api.check(resp, err, "table get"); err != nil {
		return nil, err
	}
	if tr == nil || tr.TableID == "" {
		return nil, &TransportError{Op: "table get", Err: ErrEmptyResponse}
	}
	return tr, nil
}

// Create issues PUT /tables/{tableId} with the definition and returns the created resource
func (t *TablesAPI) Create(ctx context.Context, def *TableDefinition) (*TableResource, error) {
	if def == nil || def.TableID == "" {
		return nil, fmt.Errorf("sdk: table create: table id required")
	}
	var tr *TableResource
	target := t.urls.Table(def.TableID)
	resp, err := t.api.R(ctx, target).
		SetRetryCount(0).
		SetBody(def).
		SetSuccessResult(&tr).
		Put(target)
	if err := t.api.check(resp, err, "table create"); err != nil {
		return nil, err
	}
	if tr == nil || tr.TableID == "" {
		return nil, &TransportError{Op: "table create", Err: ErrEmptyResponse}
	}
	return tr, nil
}

// Delete removes a table on the server
func (t *TablesAPI) Delete(ctx context.Context, tableID string) error {
	target := t.urls.Table(tableID)
	resp, err := t.api.R(ctx, target).
		SetRetryCount(0).
		Delete(target)
	return t.api.check(resp, err, "table delete")
}

// Definition fetches the definition resource at a table's definition URI
func (t *TablesAPI) Definition(ctx context.Context, definitionURI string) (*TableDefinitionResource, error) {
	var def *TableDefinitionResource
	resp, err := t.api.R(ctx, definitionURI).
		SetSuccessResult(&def).
		Get(definitionURI)
	if err := t.api.check(resp, err, "table definition"); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &TransportError{Op: "table definition", Err: ErrEmptyResponse}
	}
	return def, nil
}
