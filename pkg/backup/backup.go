package backup

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"TourGuard/pkg/config"
	"TourGuard/pkg/logger"

	"go.uber.org/zap"
)

// Run 根据配置执行一次数据库备份，由定时任务驱动
func Run() {
	if err := ExecuteBackup(); err != nil {
		logger.Warn("backup failed", zap.Error(err))
		return
	}
	logger.Info("backup completed")
}

// ExecuteBackup 根据配置执行数据库备份
func ExecuteBackup() error {
	cfg := config.GlobalConfig
	switch cfg.DBDriver {
	case "sqlite":
		dst := filepath.Join(cfg.BackupPath, fmt.Sprintf("tourguard_backup_%s.db", time.Now().Format("20060102_150405")))
		return BackupSQLiteDatabase(cfg.DSN, dst)
	case "mysql":
		dst := filepath.Join(cfg.BackupPath, fmt.Sprintf("tourguard_backup_%s.sql", time.Now().Format("20060102_150405")))
		return BackupMySQLDatabase(cfg.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

func ensureBackupDir(dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		return os.MkdirAll(backupDir, os.ModePerm)
	}
	return nil
}

// BackupSQLiteDatabase 文件级拷贝备份
func BackupSQLiteDatabase(src string, dst string) error {
	if err := ensureBackupDir(dst); err != nil {
		return fmt.Errorf("failed to create backup directory: %v", err)
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer destFile.Close()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("error copying data: %v", err)
	}
	return nil
}

// BackupMySQLDatabase 使用 mysqldump 导出
func BackupMySQLDatabase(dsn, dst string) error {
	if err := ensureBackupDir(dst); err != nil {
		return fmt.Errorf("failed to create backup directory: %v", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer destFile.Close()

	cmd := exec.Command("mysqldump", dsn)
	cmd.Stdout = destFile
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to backup MySQL database: %v", err)
	}
	return nil
}
