package errs

// Stable error codes shared between the HTTP surface and the gateway.
const (
	CodeArgs          = 1001
	CodeRecordIsExist = 1002
	CodeRecordNotFind = 1003
	CodeTokenInvalid  = 1101
	CodePassword      = 1102
	CodeInternal      = 1500
	CodeBlobTooLarge  = 1601
	CodeBlobType      = 1602
)

var (
	ErrArgs          = NewCodeError(CodeArgs, "invalid argument")
	ErrRecordIsExist = NewCodeError(CodeRecordIsExist, "record already exists")
	ErrRecordNotFind = NewCodeError(CodeRecordNotFind, "record not found")
	ErrTokenInvalid  = NewCodeError(CodeTokenInvalid, "token invalid")
	ErrPassword      = NewCodeError(CodePassword, "incorrect password")
	ErrInternal      = NewCodeError(CodeInternal, "internal error")
	ErrBlobTooLarge  = NewCodeError(CodeBlobTooLarge, "blob exceeds size limit")
	ErrBlobType      = NewCodeError(CodeBlobType, "blob content type not allowed")
)
