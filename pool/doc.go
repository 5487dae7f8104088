// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for the poll-mode plane: a preallocated mbuf pool over one
// backing allocation with a lock-free free ring. The pool is shared by the
// whole process and safe for concurrent alloc/free.
package pool
