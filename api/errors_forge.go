package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/trigger"
)

// mapError converts trigger sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, trigger.ErrEventNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, trigger.ErrScheduledEventNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, trigger.ErrTriggerNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, trigger.ErrEventTerminal):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, trigger.ErrPayloadValidationFailed):
		return forge.BadRequest(err.Error())
	case errors.Is(err, trigger.ErrInvalidCron):
		return forge.BadRequest(err.Error())
	case errors.Is(err, trigger.ErrNoStore):
		return forge.InternalError(err)
	case errors.Is(err, trigger.ErrStoreClosed):
		return forge.InternalError(err)
	case errors.Is(err, trigger.ErrMigrationFailed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
