// Package ui provides the terminal dashboard for OTA firmware transfers.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model.Update is the only place state
// changes: list fetches, poll ticks, poll results and mutation outcomes all
// arrive as messages, so the poll registries, collections and the row
// locator are never touched concurrently.
//
// # Views
//
//   - Devices: paged device table, multi-select, upload, scheduled start and
//     start transfer
//   - Tasks: paged task table with per-task status counts and done/total
//     progress, expandable device list, cancel
//   - Firmware: uploaded files and the current firmware
//   - Activity: tail of the structured log file
//   - Sensors: sensor monitoring devices with LED, button and online state
//     and a temperature sparkline, polled only while the view is open
//   - Login: shown when the backend needs a session and none is valid
//
// # Event Flow
//
//  1. Init loads the device, task and file lists
//  2. A device list load resets device poll chains to the in-flight devices
//  3. A task list load (and every page change) retains status chains for the
//     tasks on screen
//  4. Poll results merge into the collections; rows whose revision changed
//     are re-rendered, the rest come from the row cache
//  5. Mutations run as commands and report back through mutation.Done
//  6. A failed list fetch keeps the last rows and waits for r or the next
//     mutation refetch; nothing is retried on its own
//  7. An unauthorized response anywhere stops every chain and shows Login
//
// # Key Bindings
//
//   - 1-5 or Tab: switch view
//   - j/k, [ and ]: move and page
//   - space: select, enter: start transfer or open device
//   - u: upload, s: schedule, t: go to task, o: expand task, x: cancel
//   - r: reload, T: theme, L: log out, e or Ctrl+C: exit
package ui
