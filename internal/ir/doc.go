// Package ir provides the value algebra and record types shared by every
// dashstore package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - pixel coordinates are int64
//   - A nil IRValue means "field absent"; it is never serialised
//   - All wire names use snake_case
//   - Ordering uses logical sequence numbers, never wall-clock time
package ir
