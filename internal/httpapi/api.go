package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Health status values.
const (
	Ok HealthStatus = "ok"
)

type HealthStatus string

type Health struct {
	Status HealthStatus `json:"status"`
}

type Error struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details *map[string]any `json:"details,omitempty"`
}

type TagId = int64

type FormatRequest struct {
	Tags string `json:"tags"`
}

type Rejection struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type FormatResponse struct {
	Tags     string      `json:"tags"`
	Items    []string    `json:"items"`
	Rejected []Rejection `json:"rejected"`
}

type HeadResponse struct {
	Tags string `json:"tags"`
}

type CheckResponse struct {
	Reserved    bool `json:"reserved"`
	Whitelisted bool `json:"whitelisted"`
}

type Tag struct {
	Id             int64     `json:"id"`
	Title          string    `json:"title"`
	Uri            string    `json:"uri"`
	Description    string    `json:"description"`
	IconUrl        *string   `json:"iconUrl,omitempty"`
	ReferenceCount int       `json:"referenceCount"`
	Status         int       `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type TagCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type TagUpdate struct {
	Status *int `json:"status,omitempty"`
}

type TagListResponse struct {
	Items    []Tag `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int   `json:"total"`
}

type HeadTagsParams struct {
	Tags string `form:"tags" json:"tags"`
	N    int    `form:"n" json:"n"`
}

type CheckTagsParams struct {
	Text string `form:"text" json:"text"`
}

type ListTagsParams struct {
	Prefix   *string `form:"prefix,omitempty" json:"prefix,omitempty"`
	Page     *int    `form:"page,omitempty" json:"page,omitempty"`
	PageSize *int    `form:"pageSize,omitempty" json:"pageSize,omitempty"`
}

// ServerInterface is the set of operations described in openapi.yaml.
type ServerInterface interface {
	FormatTags(w http.ResponseWriter, r *http.Request)
	HeadTags(w http.ResponseWriter, r *http.Request, params HeadTagsParams)
	CheckTags(w http.ResponseWriter, r *http.Request, params CheckTagsParams)
	ListTags(w http.ResponseWriter, r *http.Request, params ListTagsParams)
	CreateTag(w http.ResponseWriter, r *http.Request)
	GetTag(w http.ResponseWriter, r *http.Request, id TagId)
	UpdateTag(w http.ResponseWriter, r *http.Request, id TagId)
	UploadTagIcon(w http.ResponseWriter, r *http.Request, id TagId)
	GetTagIcon(w http.ResponseWriter, r *http.Request, id TagId)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) FormatTags(w http.ResponseWriter, r *http.Request) {
	siw.Handler.FormatTags(w, r)
}

func (siw *ServerInterfaceWrapper) HeadTags(w http.ResponseWriter, r *http.Request) {
	var params HeadTagsParams

	if err := runtime.BindQueryParameter("form", true, true, "tags", r.URL.Query(), &params.Tags); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "tags", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "n", r.URL.Query(), &params.N); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "n", Err: err})
		return
	}

	siw.Handler.HeadTags(w, r, params)
}

func (siw *ServerInterfaceWrapper) CheckTags(w http.ResponseWriter, r *http.Request) {
	var params CheckTagsParams

	if err := runtime.BindQueryParameter("form", true, true, "text", r.URL.Query(), &params.Text); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "text", Err: err})
		return
	}

	siw.Handler.CheckTags(w, r, params)
}

func (siw *ServerInterfaceWrapper) ListTags(w http.ResponseWriter, r *http.Request) {
	var params ListTagsParams

	if err := runtime.BindQueryParameter("form", true, false, "prefix", r.URL.Query(), &params.Prefix); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "prefix", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &params.Page); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "page", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "pageSize", r.URL.Query(), &params.PageSize); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "pageSize", Err: err})
		return
	}

	siw.Handler.ListTags(w, r, params)
}

func (siw *ServerInterfaceWrapper) CreateTag(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateTag(w, r)
}

func (siw *ServerInterfaceWrapper) GetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetTag(w, r, id)
}

func (siw *ServerInterfaceWrapper) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.UpdateTag(w, r, id)
}

func (siw *ServerInterfaceWrapper) UploadTagIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.UploadTagIcon(w, r, id)
}

func (siw *ServerInterfaceWrapper) GetTagIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetTagIcon(w, r, id)
}

func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request) (TagId, bool) {
	var id TagId
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return 0, false
	}
	return id, true
}
