// Package ota provides the HTTP client and data model for the firmware
// over-the-air backend.
//
// # Overview
//
// The backend tracks wireless devices, the transfer tasks that push a
// firmware image to a set of them, and the firmware files uploaded for
// those transfers. The package is split into three files:
//
//   - client.go: HTTP client, the API interface and error types
//   - types.go: devices, tasks, statuses and request payloads
//   - session.go: bearer token session and its persistence
//
// # Endpoints
//
//   - POST /login: exchange credentials for a token
//   - GET /ota/deviceTransfers: every device with its transfer state
//   - GET /ota/deviceTransfers/{id}: one device (?view=status for the short form)
//   - GET /ota/transferTasks: every transfer task
//   - POST /otaStart, /otaCancel: create and cancel transfer tasks
//   - GET /otaGetS3: uploaded firmware files and the current firmware
//   - POST /otaUpload, /otaSetCurrentFirmware: manage firmware files
//
// Paths are resolved under the configured base URL, so a deployment prefix
// such as http://host/api is preserved.
//
// # Decoding
//
// Parts of the backend answer in snake_case and parts in camelCase. Response
// keys are normalized before decoding so both land in the same fields.
// Statuses are upper-cased and "Canceled" is folded into CANCELLED.
//
// # Authorization
//
// Every request carries the session token. A 401 or 403 clears the token,
// marks the session unauthorized and returns an error wrapping
// ErrUnauthorized; callers tear down their state and return to login.
package ota
