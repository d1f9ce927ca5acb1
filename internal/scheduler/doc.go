// Package scheduler debounces edit notifications into render cycles.
//
// The scheduler is a three state machine. The first notification moves it
// from Idle to Pending and arms a timer. Further notifications push the
// timer back by the debounce interval, but never past the max coalesce
// window measured from the first pending notification, so a continuous
// stream of edits still renders periodically. When the timer fires the
// scheduler enters Rendering and calls the render function on the timer
// goroutine. Notifications that arrive while rendering are queued and start
// a new Pending period as soon as the render returns.
//
// Renders never overlap and Notify never blocks on a render.
package scheduler
