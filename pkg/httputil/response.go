package httputil

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// RespondWithMessage sends a 200 response carrying only a message
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// RespondWithError maps err to its status and machine code. Errors that are
// not AppErrors become an opaque 500.
func RespondWithError(c *gin.Context, err error) {
	status, body := ErrorBody(err)
	c.AbortWithStatusJSON(status, body)
}

// ErrorBody builds the envelope for err.
func ErrorBody(err error) (int, Response) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternal(err)
	}
	status := appErr.StatusCode()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	return status, Response{
		Success: false,
		Message: message,
		Code:    string(appErr.Code),
	}
}

// BindError turns a binding failure into a 400. Missing required fields get
// missing_required_params, everything else bad_request.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return apperrors.NewValidation(apperrors.CodeMissingRequiredParams,
					"missing required parameter: "+fe.Field())
			}
		}
		fe := verrs[0]
		return apperrors.NewBadRequest("invalid value for "+fe.Field()+" ("+fe.Tag()+")", err)
	}
	return apperrors.NewBadRequest("invalid request body: "+err.Error(), err)
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, items interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PaginatedResponse{
			Items: items,
			Pagination: Pagination{
				Page:      page,
				PageSize:  pageSize,
				Total:     total,
				TotalPage: totalPages,
			},
		},
	})
}

// Fail records err for the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID reads a positive int64 path parameter.
func ParseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequest("invalid "+name, err)
	}
	return id, nil
}
