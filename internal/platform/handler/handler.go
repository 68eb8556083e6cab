// Package handler is the thin HTTP surface over the platform: every method
// here decodes a request, validates it, calls exactly one service or
// repository, and encodes the result. No business rule lives in this
// package — that belongs to lifecycle, compliance, report and authn.
package handler

import (
	"net/http"
	"strconv"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
)

// httputilBadDate builds the error for a date field that failed to parse
// against the platform's YYYY-MM-DD wire format.
func httputilBadDate(field string) error {
	return errors.Validation(map[string]string{field: "must be a date in YYYY-MM-DD format"})
}

// pagination reads page/per_page query params with the platform's shared
// defaults and ceiling (§6: page_size <= 200).
func pagination(r *http.Request) repository.Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 200 {
		perPage = 20
	}
	return repository.Pagination{Page: page, PageSize: perPage}
}

func meta(p repository.Pagination, total int64) *httputil.Meta {
	totalPages := int(total) / p.PageSize
	if int(total)%p.PageSize > 0 {
		totalPages++
	}
	return &httputil.Meta{Page: p.Page, PerPage: p.PageSize, Total: total, TotalPages: totalPages}
}

// actor builds the acting identity lifecycle engines authorize against, from
// the context authn.SessionMiddleware already populated.
func actor(r *http.Request) lifecycle.Actor {
	return lifecycle.Actor{
		UserID: httputil.GetUserID(r.Context()),
		Role:   domain.Role(httputil.GetUserRole(r.Context())),
	}
}
