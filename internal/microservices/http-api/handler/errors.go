package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"accounthub/internal/microservices/http-api/dto"
	"accounthub/internal/microservices/http-api/models"
	"accounthub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validator report fields by their json name so that
// binding errors are keyed the same way as service validation errors.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body into req and writes a 400 when that fails.
func bindJSON(c *gin.Context, req any) bool {
	useJSONFieldNames()

	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], bindingMessage(fe))
		}
		c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{Errors: fields})
		return false
	}

	c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
		Errors: map[string][]string{service.GeneralKey: {"Malformed request body."}},
	})
	return false
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return service.MsgFieldRequired
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "email":
		return service.MsgInvalidEmail
	default:
		return "Invalid value."
	}
}

// writeServiceError renders a validation error as 400 and anything else as
// an opaque 500, logging the cause.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error) {
	if verr, ok := service.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{Errors: verr.Fields})
		return
	}
	logger.ErrorContext(c.Request.Context(), "request_failed",
		"path", c.FullPath(),
		"error", err.Error(),
	)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
}

func toUserResponse(v models.UserView) dto.UserResponse {
	return dto.UserResponse{
		IsSuperuser: v.IsSuperuser,
		Username:    v.Username,
		Email:       v.Email,
	}
}
