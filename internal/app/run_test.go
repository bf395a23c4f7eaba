package app

import (
	"bytes"
	"testing"
)

// 到達できないDATABASE_URLを使い、各コマンドがDB接続でエラーを返すことを検証する。

func TestRun_ServeCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)
	t.Setenv("UPLOAD_DIR", t.TempDir())

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run(serve) should fail when the database is unreachable")
	}
}

func TestRun_WorkerCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)
	t.Setenv("UPLOAD_DIR", t.TempDir())

	var buf bytes.Buffer
	if err := Run(&buf, []string{"worker"}); err == nil {
		t.Fatal("Run(worker) should fail when the database is unreachable")
	}
}

func TestRun_CleanupCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)
	t.Setenv("UPLOAD_DIR", t.TempDir())

	var buf bytes.Buffer
	if err := Run(&buf, []string{"cleanup"}); err == nil {
		t.Fatal("Run(cleanup) should fail when the database is unreachable")
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	clearRequiredEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck_SkipsConfig(t *testing.T) {
	clearRequiredEnv(t)
	// 何も待ち受けていないポートを指定する
	t.Setenv("SERVER_PORT", "1")

	var buf bytes.Buffer
	err := Run(&buf, []string{"healthcheck"})
	if err == nil {
		t.Fatal("healthcheck against a closed port should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("healthcheck should not initialize logging, got %q", buf.String())
	}
}
