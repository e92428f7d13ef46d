package storage

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrHandleNotFound  = errors.New("handle not found")
	ErrorNoSuchKey     = errors.New("no such key")
	ErrBucketNotFound  = errors.New("bucket not found")
)

var (
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidPath     = errors.New("path escapes storage directory")
)
