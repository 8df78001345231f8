package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names a session lifecycle event written to audit.jsonl.
type AuditEventType string

const (
	AuditLogin             AuditEventType = "login"
	AuditLoginFailed       AuditEventType = "login_failed"
	AuditLogout            AuditEventType = "logout"
	AuditRoleChanged       AuditEventType = "role_changed"
	AuditIdentityCorrected AuditEventType = "identity_corrected"
	AuditForcedLogout      AuditEventType = "forced_logout"
	AuditRedirect          AuditEventType = "redirect"
	AuditHistoryFallback   AuditEventType = "history_fallback"
)

// AuditLogger writes one JSON line per event.
type AuditLogger struct {
	log  *zap.Logger
	file *os.File
}

var (
	auditLogger *AuditLogger
	auditMu     sync.Mutex
	nopAudit    = &AuditLogger{log: zap.NewNop()}
)

// Audit returns the process audit logger. It is a no-op outside debug mode.
func Audit() *AuditLogger {
	if !IsDebugMode() {
		return nopAudit
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger != nil {
		return auditLogger
	}

	optsMu.RLock()
	dir := logsDir
	optsMu.RUnlock()
	if dir == "" {
		return nopAudit
	}

	file, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: audit log unavailable: %v\n", err)
		return nopAudit
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(file), zapcore.InfoLevel)
	auditLogger = &AuditLogger{log: zap.New(core), file: file}
	return auditLogger
}

// Record writes an audit event with structured fields.
func (a *AuditLogger) Record(event AuditEventType, fields ...zap.Field) {
	a.log.Info(string(event), fields...)
}

func closeAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		return
	}
	_ = auditLogger.log.Sync()
	if auditLogger.file != nil {
		auditLogger.file.Close()
	}
	auditLogger = nil
}
