package cmd

import (
	"fmt"
	"log/slog"

	"rover-bridge/config"
	"rover-bridge/motor"
	"rover-bridge/motor/i2c"
	"rover-bridge/motor/pca9685"
)

// openActuator returns the configured motor driver and a function releasing
// its hardware.
func openActuator(cfg *config.Config, logger *slog.Logger) (motor.Actuator, func() error, error) {
	switch cfg.MotorDriver {
	case "log":
		logger.Warn("Using log motor driver, no hardware will move")
		return motor.NewLogActuator(logger), func() error { return nil }, nil
	case "pca9685":
		bus, err := i2c.Open(cfg.I2CBus, cfg.PCA9685Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", i2c.DevicePath(cfg.I2CBus), err)
		}
		dev, err := pca9685.New(bus)
		if err != nil {
			bus.Close()
			return nil, nil, fmt.Errorf("failed to init PCA9685 at %#x: %w", cfg.PCA9685Addr, err)
		}
		if err := dev.SetPWMFreq(cfg.PWMFreq); err != nil {
			bus.Close()
			return nil, nil, fmt.Errorf("failed to set PWM frequency: %w", err)
		}
		logger.Info("Motor driver ready", "driver", "pca9685", "bus", cfg.I2CBus,
			"addr", fmt.Sprintf("%#x", cfg.PCA9685Addr), "pwm_freq", cfg.PWMFreq)
		return motor.NewTankDriver(dev), bus.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown motor driver %q", cfg.MotorDriver)
	}
}
