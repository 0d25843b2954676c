// 重建班级等级分布脚本
//
// 从已保存的评估记录重新计算全部班级分布并覆盖存储的计数，用于审计发现不一致后的修复。
// 重建期间提交的评估可能被覆盖，请在服务空闲时运行。
//
// 用法: go run scripts/rebuild_distributions.go [-config configs] [-audit-only]

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/pkg/database"
	"sel_rubric_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

type summary struct {
	Before  service.AuditReport    `yaml:"before"`
	Rebuild *service.RebuildReport `yaml:"rebuild,omitempty"`
	After   *service.AuditReport   `yaml:"after,omitempty"`
}

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	auditOnly := flag.Bool("audit-only", false, "只检查，不重建")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}

	distRepo := repository.NewCohortDistributionRepository(db)
	aggregator := service.NewAggregatorService(
		distRepo,
		service.NewDistributionCache(rdb, cfg.Scoring.CacheTTL),
		nil,
		service.RetryPolicyFromConfig(cfg.Scoring),
	)
	audit := service.NewDistributionAuditService(distRepo, repository.NewAssessmentRepository(db), aggregator, nil)

	ctx := context.Background()
	var out summary
	if out.Before, err = audit.Audit(ctx); err != nil {
		log.Fatalf("审计失败: %v", err)
	}

	if !*auditOnly {
		report, err := audit.Rebuild(ctx)
		if err != nil {
			log.Fatalf("重建失败: %v", err)
		}
		out.Rebuild = &report

		after, err := audit.Audit(ctx)
		if err != nil {
			log.Fatalf("审计失败: %v", err)
		}
		out.After = &after
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		log.Fatalf("输出结果失败: %v", err)
	}
}
