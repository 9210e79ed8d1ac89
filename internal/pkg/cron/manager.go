package cron

import (
	log "log/slog"

	"github.com/robfig/cron/v3"
)

// Manager 定时任务管理器，封装调度器的注册与启停
type Manager struct {
	c *cron.Cron
}

func NewManager() *Manager {
	return &Manager{c: cron.New()}
}

// Register 注册一个任务，spec 为标准 cron 表达式
func (m *Manager) Register(spec string, name string, job func()) error {
	_, err := m.c.AddFunc(spec, job)
	if err != nil {
		return err
	}
	log.Info("定时任务已注册", "name", name, "spec", spec)
	return nil
}

func (m *Manager) Start() {
	m.c.Start()
}

// Stop 停止调度并等待在跑的任务结束
func (m *Manager) Stop() {
	<-m.c.Stop().Done()
}
