package solver

import (
	"fmt"

	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// CollectSysInfo describes the host the solver runs on. Fields that cannot
// be read are left empty.
func CollectSysInfo() *models.SysInfo {
	info := &models.SysInfo{}
	if hostStat, err := host.Info(); err == nil && hostStat != nil {
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPU = cpuStat[0].ModelName
	}
	if vmStat, err := mem.VirtualMemory(); err == nil && vmStat != nil {
		info.RAM = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}
	return info
}
