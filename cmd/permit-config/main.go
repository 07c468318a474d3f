package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/permit/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("permit-config - Configuration tool for permit")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  permit-config convert <input> <output>                    - Convert between formats")
	fmt.Println("  permit-config validate <file>                             - Validate configuration")
	fmt.Println("  permit-config stats <file>                                - Show configuration statistics")
	fmt.Println("  permit-config check <file> <user> <resource> <action> [ip] - Evaluate a check against the seed")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json, .bin")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: permit-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)

	inStat, _ := os.Stat(inputFile)
	outStat, _ := os.Stat(outputFile)
	if inStat != nil && outStat != nil {
		reduction := (1 - float64(outStat.Size())/float64(inStat.Size())) * 100
		if reduction > 0 {
			fmt.Printf("Size reduced by %.1f%% (%d -> %d bytes)\n",
				reduction, inStat.Size(), outStat.Size())
		} else {
			fmt.Printf("Size increased by %.1f%% (%d -> %d bytes)\n",
				-reduction, inStat.Size(), outStat.Size())
		}
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Permissions: %d\n", len(cfg.Seed.Permissions))
	fmt.Printf("  Roles: %d\n", len(cfg.Seed.Roles))
	fmt.Printf("  Users: %d\n", len(cfg.Seed.Users))
	fmt.Printf("  Assignments: %d\n", len(cfg.Seed.Assignments))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Permissions: %d\n", len(cfg.Seed.Permissions))
	fmt.Printf("  Roles:       %d\n", len(cfg.Seed.Roles))
	fmt.Printf("  Users:       %d\n", len(cfg.Seed.Users))
	fmt.Printf("  Assignments: %d\n", len(cfg.Seed.Assignments))
	fmt.Println()

	if len(cfg.Seed.Permissions) > 0 {
		conditioned := 0
		timeConds, ipConds, attrConds, customConds := 0, 0, 0, 0
		for _, p := range cfg.Seed.Permissions {
			if len(p.Conditions) > 0 {
				conditioned++
			}
			for _, c := range p.Conditions {
				switch c.(type) {
				case permit.TimeRangeCondition:
					timeConds++
				case permit.IPRangeCondition:
					ipConds++
				case permit.AttributeCondition:
					attrConds++
				case permit.CustomCondition:
					customConds++
				}
			}
		}
		fmt.Println("Permission Details:")
		fmt.Printf("  With conditions:      %d\n", conditioned)
		fmt.Printf("  Time conditions:      %d\n", timeConds)
		fmt.Printf("  IP conditions:        %d\n", ipConds)
		fmt.Printf("  Attribute conditions: %d\n", attrConds)
		fmt.Printf("  Custom conditions:    %d\n", customConds)
		fmt.Println()
	}

	if len(cfg.Seed.Roles) > 0 {
		totalPerms := 0
		inheriting := 0
		for _, r := range cfg.Seed.Roles {
			totalPerms += len(r.PermissionIDs)
			if len(r.Inherits) > 0 {
				inheriting++
			}
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permission refs: %d\n", totalPerms)
		fmt.Printf("  Avg per role:          %.1f\n", float64(totalPerms)/float64(len(cfg.Seed.Roles)))
		fmt.Printf("  With inheritance:      %d\n", inheriting)
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Decision cache TTL:   %dms\n", cfg.Engine.CacheTTL)
	fmt.Printf("  Session check TTL:    %dms\n", cfg.Engine.SessionCheckTTL)
	fmt.Printf("  Audit retention:      %dms\n", cfg.Engine.AuditRetention)
	fmt.Printf("  Maintenance interval: %dms\n", cfg.Engine.MaintenanceInterval)
	fmt.Printf("  Max cache size:       %d\n", cfg.Engine.MaxCacheSize)
	fmt.Printf("  Audit disabled:       %v\n", cfg.Engine.DisableAudit)
	fmt.Printf("  Cache disabled:       %v\n", cfg.Engine.DisableCache)
}

func handleCheck() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: permit-config check <file> <user> <resource> <action> [ip]")
		os.Exit(1)
	}

	filename := os.Args[2]
	userID := os.Args[3]
	resource := os.Args[4]
	action := os.Args[5]

	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	engine, err := permit.NewEngine(cfg, permit.WithLogger(logger.NewNullLogger()))
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		fmt.Printf("Error starting engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Stop(ctx)

	var rc *permit.RequestContext
	if len(os.Args) > 6 {
		rc = &permit.RequestContext{ClientIP: os.Args[6]}
	}

	ev := engine.EvaluatePolicy(ctx, userID, resource, action, rc)
	fmt.Printf("Decision: %s\n", ev.Decision.Outcome)
	if ev.Decision.Reason != "" {
		fmt.Printf("Reason:   %s\n", ev.Decision.Reason)
	}
	fmt.Printf("Evaluated permissions: %d\n", ev.EvaluatedPermissions)
	if len(ev.MatchedPermissions) > 0 {
		fmt.Printf("Matched: %s\n", strings.Join(ev.MatchedPermissions, ", "))
	}
	fmt.Printf("Elapsed: %s\n", ev.Elapsed)

	if !ev.Decision.Granted() {
		os.Exit(1)
	}
}

func loadConfig(filename string) (*permit.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := permit.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	case ".bin":
		return loader.LoadBinary(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *permit.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".bin":
		data, err = permit.EncodeBinaryConfig(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
