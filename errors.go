// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nandprog

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-nandprog/internal/frame"
)

// Error categories for result handling and connect retry logic
var (
	// Transport errors - fatal to the running operation, never retried
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrShortTransfer    = errors.New("short transfer")
	ErrDisconnected     = errors.New("disconnected during operation")

	// Protocol errors - the link is desynchronized
	ErrMalformedResponse  = errors.New("malformed response")
	ErrUnexpectedResponse = errors.New("unexpected response")

	// Device-reported outcomes
	ErrDeviceError = errors.New("device reported error")
	ErrBadBlock    = errors.New("bad block")

	// Call-site rejections - the operation never started
	ErrNotConnected     = errors.New("programmer not connected")
	ErrAlreadyConnected = errors.New("programmer already connected")
	ErrBusy             = errors.New("operation already in progress")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response the outstanding command can never produce.
// There is no resynchronization mechanism, so the operation is abandoned.
type ProtocolError struct {
	Err     error  // ErrMalformedResponse or ErrUnexpectedResponse
	Op      string // Operation that was running
	Detail  string
	Command byte // Command awaiting the response
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %v to %s", e.Op, e.Err, frame.CommandName(e.Command))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DeviceError reports a Status(Error) response. The connection stays usable.
type DeviceError struct {
	Op      string
	Command byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device reported error for %s", e.Op, frame.CommandName(e.Command))
}

func (*DeviceError) Unwrap() error {
	return ErrDeviceError
}

// BadBlockError reports a block the device refuses to use. Writes end with
// this error so the caller can retry at another address.
type BadBlockError struct {
	Op   string
	Addr uint32
}

func (e *BadBlockError) Error() string {
	return fmt.Sprintf("%s: bad block at 0x%08X", e.Op, e.Addr)
}

func (*BadBlockError) Unwrap() error {
	return ErrBadBlock
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// GetErrorType classifies an arbitrary error for TransportError.Type.
func GetErrorType(err error) ErrorType {
	var te *TransportError
	switch {
	case errors.As(err, &te):
		return te.Type
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case IsDeviceGone(err),
		errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return ErrorTypePermanent
	default:
		return ErrorTypeTransient
	}
}

// IsRetryable returns true if the error is potentially retryable. Only opening
// a connection is ever retried; a failed exchange cannot be replayed because
// the device state is unknown.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite):
		return true
	default:
		return false
	}
}

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocolError reports whether err is a protocol desynchronization.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// BadBlockAddr extracts the bad block address from err.
func BadBlockAddr(err error) (uint32, bool) {
	var be *BadBlockError
	if errors.As(err, &be) {
		return be.Addr, true
	}
	return 0, false
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// IsDeviceGone checks for OS-level errors indicating the programmer was
// unplugged during I/O.
func IsDeviceGone(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}

		if runtime.GOOS == "windows" {
			//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
			switch errno {
			case errAccessDenied, errGenFailure, errNoSuchDevice:
				return true
			}
		}
	}

	return false
}
