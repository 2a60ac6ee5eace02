package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/geogate/internal/apperr"
	"github.com/UnknownOlympus/geogate/internal/service"
	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Query                   string   `json:"query"                     validate:"required,max=255"`
	Provider                string   `json:"provider"                  validate:"required,provider"`
	Countries               []string `json:"countries"                 validate:"omitempty,dive,iso3166_1_alpha2"`
	Language                string   `json:"language"                  validate:"omitempty,max=35"`
	AdditionalExcludeFields []string `json:"additional_exclude_fields" validate:"omitempty,dive,required"`
}

type reverseRequest struct {
	Lat                     coordinate `json:"lat"                       validate:"required,float,between=-90:90"`
	Lon                     coordinate `json:"lon"                       validate:"required,float,between=-180:180"`
	Provider                string     `json:"provider"                  validate:"required,provider"`
	Language                string     `json:"language"                  validate:"omitempty,max=35"`
	AdditionalExcludeFields []string   `json:"additional_exclude_fields" validate:"omitempty,dive,required"`
}

// coordinate keeps the text of a JSON number or string so that non-numeric input
// is reported by validation rather than by the decoder.
type coordinate string

func (c *coordinate) UnmarshalJSON(data []byte) error {
	switch {
	case string(data) == "null":
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = coordinate(text)
	default:
		*c = coordinate(data)
	}

	return nil
}

func (c coordinate) float64() float64 {
	value, _ := parseFloat(string(c))
	return value
}

// Handler serves the lookup endpoints.
type Handler struct {
	log      *slog.Logger
	gateway  Gateway
	validate *Validator
	debug    bool
}

// NewHandler creates a Handler. With debug set, 500 responses carry the error text.
func NewHandler(log *slog.Logger, gateway Gateway, debug bool) *Handler {
	return &Handler{
		log:      log,
		gateway:  gateway,
		validate: NewValidator(gateway.HasProvider),
		debug:    debug,
	}
}

// Search handles POST /search.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.Language = strings.TrimSpace(req.Language)
	for i, code := range req.Countries {
		req.Countries[i] = strings.ToUpper(strings.TrimSpace(code))
	}

	if fields := h.validate.Struct(req); fields != nil {
		h.fail(c, apperr.Validation(fields))
		return
	}

	result, err := h.gateway.Search(c.Request.Context(), service.SearchQuery{
		Provider:          req.Provider,
		Query:             req.Query,
		Countries:         req.Countries,
		Language:          req.Language,
		AdditionalExclude: req.AdditionalExcludeFields,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, result)
}

// Reverse handles POST /reverse.
func (h *Handler) Reverse(c *gin.Context) {
	var req reverseRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	req.Language = strings.TrimSpace(req.Language)

	if fields := h.validate.Struct(req); fields != nil {
		h.fail(c, apperr.Validation(fields))
		return
	}

	result, err := h.gateway.Reverse(c.Request.Context(), service.ReverseQuery{
		Provider:          req.Provider,
		Lat:               req.Lat.float64(),
		Lon:               req.Lon.float64(),
		Language:          req.Language,
		AdditionalExclude: req.AdditionalExcludeFields,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, result)
}

// Providers handles GET /providers.
func (h *Handler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":   h.gateway.DefaultProvider(),
		"providers": h.gateway.Providers(),
	})
}

// respond writes the result and then hands it to the gateway for the deferred cache write.
func (h *Handler) respond(c *gin.Context, result *service.Result) {
	if result.Status != service.StatusThrottled {
		c.Header(CacheHeader, string(result.Status))
	}
	c.JSON(http.StatusOK, result.Response)

	h.gateway.Persist(result)
}

// fail maps err to its response envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}

	ctx := c.Request.Context()
	status := appErr.HTTPStatus()

	switch {
	case apperr.Is(err, apperr.KindUpstream):
		h.log.WarnContext(ctx, "Provider request failed", "path", c.Request.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		h.log.ErrorContext(ctx, "Request failed", "path", c.Request.URL.Path, "error", err)
	default:
		h.log.InfoContext(ctx, "Request rejected", "path", c.Request.URL.Path, "error", appErr.Message)
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		c.JSON(status, gin.H{"message": appErr.Message, "errors": appErr.Details})
	case apperr.KindBadRequest:
		c.JSON(status, gin.H{"message": appErr.Message})
	case apperr.KindUpstream:
		c.JSON(status, gin.H{"message": appErr.Message, "status": appErr.Details})
	default:
		body := gin.H{"message": "Internal server error"}
		if h.debug {
			body["error"] = err.Error()
		}
		c.JSON(status, body)
	}
}

// bindJSON decodes the request body into dst. An empty body leaves dst zero so
// validation reports the missing fields.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Validation(map[string][]string{
			typeErr.Field: {"The " + typeErr.Field + " field has an invalid type."},
		})
	}

	return apperr.Wrap(apperr.KindBadRequest, "Malformed request body", err).WithOp("server.bind")
}
