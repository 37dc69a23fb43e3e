package response

import (
	"github.com/gofiber/fiber/v2"
)

// Meta carries list counts and degradation flags next to the payload. fiber.Map converts
// to it implicitly.
type Meta = map[string]any

// SuccessBody is the envelope of every 2xx response.
type SuccessBody struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Data     any    `json:"data"`
	Metadata Meta   `json:"metadata"`
}

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    Meta   `json:"details"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func Success(c *fiber.Ctx, message string, data any, meta Meta) error {
	return send(c, fiber.StatusOK, message, data, meta)
}

func SuccessCreated(c *fiber.Ctx, message string, data any, meta Meta) error {
	return send(c, fiber.StatusCreated, message, data, meta)
}

func send(c *fiber.Ctx, code int, message string, data any, meta Meta) error {
	if meta == nil {
		meta = Meta{}
	}
	return c.Status(code).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: meta,
	})
}

// Error writes the error envelope. details is never serialised as null.
func Error(c *fiber.Ctx, message string, statusCode int, details Meta) error {
	if details == nil {
		details = Meta{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// BadRequest sends 400 with err's message. Handlers use it for the service's sentinel
// validation errors.
func BadRequest(c *fiber.Ctx, err error) error {
	return Error(c, err.Error(), fiber.StatusBadRequest, nil)
}

// InvalidBody is the 400 for a request body that does not decode.
func InvalidBody(c *fiber.Ctx) error {
	return Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusForbidden, nil)
}
