// Package analysis post-processes trajectories and thermodynamic series.
//
//   - [MSD]: mean squared displacement of an unwrapped trajectory
//   - [Unwrap]: undo periodic wrapping frame by frame
//   - [Diffusion]: self-diffusion coefficient from the MSD slope
//   - [PowerSpectrum]: spectrum of a sampled series, e.g. thermostat oscillations
//
// # Diffusion
//
// In three dimensions MSD(t) → 6Dt at long times:
//
//	msd, _ := analysis.MSD(frames)
//	fit, _ := analysis.Diffusion(times, msd, 0.2)
//	fmt.Println(fit.D)
package analysis
