package api

import (
	"fmt"

	"cylroute/internal/model"
	"cylroute/internal/opt"
)

const (
	// planning grows steeply with map size and runs inside the request
	maxCylinders = 200
	maxTuneMaps  = 100
	maxTrials    = 100000
	maxWorkers   = 64
)

// checkMapSize bounds what a request may plan; stored plans are not rechecked.
func checkMapSize(in []model.CylinderIn) error {
	if len(in) > maxCylinders {
		return fmt.Errorf("too many cylinders: %d (max %d)", len(in), maxCylinders)
	}
	return nil
}

func toCylinders(in []model.CylinderIn) ([]opt.Cylinder, error) {
	out := make([]opt.Cylinder, len(in))
	for i, c := range in {
		cyl, err := opt.NewCylinder(c.X, c.Y, c.Category)
		if err != nil {
			return nil, fmt.Errorf("cylinder %d: %w", i, err)
		}
		out[i] = cyl
	}
	return out, nil
}

// resolvePasses picks the 2-opt pass limit for a request: the requested one,
// else the configured one, never above passCap when passCap > 0.
func resolvePasses(requested, configured, passCap int) (int, error) {
	if requested < 0 {
		return 0, fmt.Errorf("maxPasses must be >= 0")
	}
	if passCap > 0 && requested > passCap {
		return 0, fmt.Errorf("maxPasses must be <= %d", passCap)
	}
	passes := configured
	if requested > 0 {
		passes = requested
	}
	if passCap > 0 && (passes == 0 || passes > passCap) {
		passes = passCap
	}
	return passes, nil
}

// validatePlanRequest resolves a plan request against the server defaults.
func validatePlanRequest(req *model.PlanRequest, base opt.Planner, origin opt.Point, passCap int) ([]opt.Cylinder, opt.Point, opt.Planner, error) {
	if err := checkMapSize(req.Cylinders); err != nil {
		return nil, opt.Point{}, opt.Planner{}, err
	}
	cyls, err := toCylinders(req.Cylinders)
	if err != nil {
		return nil, opt.Point{}, opt.Planner{}, err
	}
	p := base
	if req.Weights != nil {
		if err := req.Weights.Validate(); err != nil {
			return nil, opt.Point{}, opt.Planner{}, err
		}
		p.Weights = *req.Weights
	}
	if req.Policy != "" {
		pol, ok := opt.ParseBlockerPolicy(req.Policy)
		if !ok {
			return nil, opt.Point{}, opt.Planner{}, fmt.Errorf("invalid policy: %s", req.Policy)
		}
		p.Policy = pol
	}
	passes, err := resolvePasses(req.MaxPasses, base.MaxPasses, passCap)
	if err != nil {
		return nil, opt.Point{}, opt.Planner{}, err
	}
	p.MaxPasses = passes
	if req.Origin != nil {
		origin = *req.Origin
	}
	return cyls, origin, p, nil
}

func validateTuneRequest(req *model.TuneRequest, configuredPasses, passCap int) ([][]opt.Cylinder, opt.BlockerPolicy, int, error) {
	if len(req.Maps) == 0 {
		return nil, 0, 0, fmt.Errorf("maps must not be empty")
	}
	if len(req.Maps) > maxTuneMaps {
		return nil, 0, 0, fmt.Errorf("too many maps: %d (max %d)", len(req.Maps), maxTuneMaps)
	}
	if req.Trials < 0 || req.Trials > maxTrials {
		return nil, 0, 0, fmt.Errorf("trials must be in [0,%d]", maxTrials)
	}
	if req.Workers < 0 || req.Workers > maxWorkers {
		return nil, 0, 0, fmt.Errorf("workers must be in [0,%d]", maxWorkers)
	}
	passes, err := resolvePasses(req.MaxPasses, configuredPasses, passCap)
	if err != nil {
		return nil, 0, 0, err
	}
	pol, ok := opt.ParseBlockerPolicy(req.Policy)
	if !ok {
		return nil, 0, 0, fmt.Errorf("invalid policy: %s", req.Policy)
	}
	maps := make([][]opt.Cylinder, len(req.Maps))
	for i, m := range req.Maps {
		if err := checkMapSize(m); err != nil {
			return nil, 0, 0, fmt.Errorf("map %d: %w", i, err)
		}
		cyls, err := toCylinders(m)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("map %d: %w", i, err)
		}
		maps[i] = cyls
	}
	return maps, pol, passes, nil
}
