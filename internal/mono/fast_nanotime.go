//go:build mono

// Package mono provides a monotonic clock source used for measuring
// in-flight call age and backpressure wait times without wall-clock skew.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import (
	_ "unsafe" // for go:linkname
)

// NanoTime links directly against the runtime monotonic clock, avoiding
// the allocation and wall-clock read done by time.Now().
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
