package main

// General API documentation for swaggo. Regenerate internal/apidocs with
// `swag init -g cmd/comfyd/docs.go -o internal/apidocs --packageName apidocs`.
//
// @title           comfyd API
// @version         1.0
// @description     HTTP API for orchestrating ComfyUI image generation per chat session.
//
// @contact.name   comfyd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
