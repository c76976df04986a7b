package main

// General API documentation for swaggo. Regenerate docs/ with:
//
//	swag init -g cmd/localllm/docs.go -o docs
//
// @title           localllm API
// @version         1.0
// @description     HTTP API for a locally hosted causal language model with a generate_content interface.
//
// @contact.name   localllm maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
