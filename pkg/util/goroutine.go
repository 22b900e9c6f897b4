/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package util

import (
	"fmt"
	"runtime"
)

func GoWithRecover(handler func(), recoverHandlers ...func(p interface{})) {
	go WithRecover(handler, recoverHandlers...)
}

func WithRecover(handler func(), recoverHandlers ...func(p interface{})) {
	defer func() {
		if r := recover(); r != nil {
			for _, f := range recoverHandlers {
				if f != nil {
					f(r)
				}
			}
		}
	}()
	handler()
}

// WithRecoverE runs handler and converts a panic into an error carrying the stack.
func WithRecoverE(handler func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			err = fmt.Errorf("panic: %v\n%s", r, buf)
		}
	}()
	return handler()
}
