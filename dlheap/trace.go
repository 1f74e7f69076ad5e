// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dlheap

import (
	"fmt"
	"os"
)

// tracef is compiled away entirely when trace is false: every call
// site is behind `if trace`, so the Go compiler dead-code-eliminates
// both the call and its argument evaluation.
func tracef(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "dlheap: "+format+"\n", args...)
}
