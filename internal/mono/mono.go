//go:build !mono

// Package mono provides a monotonic clock source used for measuring
// in-flight call age and backpressure wait times without wall-clock skew.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since package init, monotonic
// within a process. Not comparable across processes.
func NanoTime() int64 { return int64(time.Since(start)) }
