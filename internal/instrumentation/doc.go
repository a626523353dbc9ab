// Package instrumentation provides observability (metrics, tracing, audit)
// for the petrel MCP server.
//
// It includes:
//   - OpenTelemetry metrics for HTTP requests, OAuth operations, JMAP
//     backend calls, tool invocations, policy decisions and datamark
//     detections
//   - OpenTelemetry tracing with configurable exporters
//   - Audit logging for tool invocations and permission denials with PII
//     controls
//
// # Metrics
//
// HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, status
//   - http_request_duration_seconds: Histogram of request durations
//   - active_sessions: Gauge of active user sessions
//
// JMAP Metrics:
//   - jmap_operations_total: Counter of backend operations by service, operation, status
//   - jmap_operation_duration_seconds: Histogram of backend operation durations
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of authentication attempts by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Tool Metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool, status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// Policy and Datamarking Metrics:
//   - policy_decisions_total: Counter of permission decisions by operation, role, decision
//   - datamark_detections_total: Counter of fired suspicious-content rules by rule
//
// # Tracing
//
// Spans are created for:
//   - MCP tool executions (mcp.tool.<name>)
//   - JMAP backend calls (jmap.<service>.<operation>)
//
// # Configuration
//
// Configuration is environment-driven:
//   - OTEL_SERVICE_NAME: Service name (default: petrel)
//   - OTEL_METRICS_EXPORTER: prometheus, otlp, stdout, or none
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector endpoint
//   - AUDIT_LOGGING_ENABLED: Enable audit logging (default: true)
//   - AUDIT_LOGGING_INCLUDE_PII: Include full emails in audit logs (default: false)
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordJMAPOperation(ctx, "mail", "list", "success", time.Since(start))
//	metrics.RecordToolInvocation(ctx, "list_emails", "success", time.Since(start))
package instrumentation
