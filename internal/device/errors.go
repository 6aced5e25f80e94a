package device

import (
	"fmt"

	"github.com/pkg/errors"
)

const unknownError = "Unknown error"

// DeviceError reports a failed device exchange, either a success=false reply or a transport error
//
//nolint:revive // DeviceError reads better than device.Error at call sites
type DeviceError struct {
	Op     string
	Reason string
	cause  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s failed: %s", e.Op, e.Reason)
}

func (e *DeviceError) Unwrap() error {
	return e.cause
}

// IsDeviceError reports whether err carries a DeviceError
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// Check folds a transport error and the status of a device reply into a single error.
// A nil reply counts as a failure.
func Check(op string, reply any, err error) error {
	if err != nil {
		return &DeviceError{Op: op, Reason: err.Error(), cause: err}
	}

	status := statusOf(reply)
	if status == nil {
		return &DeviceError{Op: op, Reason: "empty response"}
	}
	if !status.Success {
		reason := status.Error
		if reason == "" {
			reason = unknownError
		}
		return &DeviceError{Op: op, Reason: reason}
	}
	return nil
}

func statusOf(reply any) *Status {
	switch r := reply.(type) {
	case *Status:
		return r
	case *PublicKeyResponse:
		if r != nil {
			return &r.Status
		}
	case *AccountInfoResponse:
		if r != nil {
			return &r.Status
		}
	case *SignedMessage:
		if r != nil {
			return &r.Status
		}
	case *SignedTransaction:
		if r != nil {
			return &r.Status
		}
	case *AddressResponse:
		if r != nil {
			return &r.Status
		}
	}
	return nil
}

// Failed builds a failure status
func Failed(reason string) Status {
	return Status{Success: false, Error: reason}
}

// OK is the success status
//
//nolint:gochecknoglobals
var OK = Status{Success: true}
