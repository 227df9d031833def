// Package api provides the backup engine REST API.
//
//	@title		Backstack API
//	@version	1.0
//	@description	Backup chain and retention engine API
//	@BasePath	/api/v1
package api
