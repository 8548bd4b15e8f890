package errs

import (
	"github.com/pkg/errors"
)

const (
	CodeInvalidArgs       = 1001
	CodeUnsupportedFormat = 1002
	CodeTruncatedStream   = 2001
	CodeMalformedSyntax   = 2002
	CodeMissingParamSet   = 2003
	CodeDemuxerFailed     = 3001
	CodeUnknown           = 9999
)

var (
	ErrInvalidArgs       = New(CodeInvalidArgs, "invalid arguments")
	ErrUnsupportedFormat = New(CodeUnsupportedFormat, "unsupported file format")
	ErrTruncatedStream   = New(CodeTruncatedStream, "truncated stream")
	ErrMalformedSyntax   = New(CodeMalformedSyntax, "malformed syntax element")
	ErrMissingParamSet   = New(CodeMissingParamSet, "missing referenced parameter set")
	ErrDemuxerFailed     = New(CodeDemuxerFailed, "demuxer failed")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

func Code(e error) int32 {
	if e == nil {
		return 0
	}
	err, ok := e.(*Error)
	if !ok {
		return CodeUnknown
	}

	if err == (*Error)(nil) {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	err, ok := e.(*Error)
	if !ok {
		return "unknown error: " + e.Error()
	}

	if err == (*Error)(nil) {
		return Success
	}

	return err.Msg
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
