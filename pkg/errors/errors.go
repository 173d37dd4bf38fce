package errors

import "fmt"

// StorageError 存储层失败，保留底层错误信息以便展示给用户
type StorageError struct {
	Op  string // 失败的存储操作，如 "upsert"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage 包装存储层错误；err 为 nil 时返回 nil
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
