package config

// Default returns the reference rig: six cameras, five radars and a roof
// lidar mounted as on the dataset's recording vehicle, sampled at 2 Hz over a
// 20 s scene.
func Default() *Config {
	return &Config{
		Version:          "v1.0-test",
		DurationSec:      20,
		SampleIntervalUS: 500_000,
		ImageWidth:       1600,
		ImageHeight:      900,
		CameraDefaultFOV: 70,
		Location:         "eval",
		SceneName:        "scene_1",
		SceneDescription: "Evaluation scene",
		Sensors:          defaultSensors(),
	}
}

func intrinsic(fx, fy, cx, cy float64) *[3][3]float64 {
	return &[3][3]float64{{fx, 0, cx}, {0, fy, cy}, {0, 0, 1}}
}

func defaultSensors() map[string]SensorConfig {
	return map[string]SensorConfig{
		"CAM_FRONT": {
			Translation:  [3]float64{1.72200568478, 0.00475453292289, 1.49491291905},
			RotationWXYZ: [4]float64{0.5077241387638071, -0.4973392230703816, 0.49837167536166627, -0.4964832014373754},
			Intrinsic:    intrinsic(1252.8131021185304, 1252.8131021185304, 826.588114781398, 469.9846626224581),
		},
		"CAM_FRONT_RIGHT": {
			Translation:  [3]float64{1.58082565783, -0.499078711449, 1.51749368405},
			RotationWXYZ: [4]float64{0.20335173766558642, -0.19146333228946724, 0.6785710044972951, -0.6793609166212989},
			Intrinsic:    intrinsic(1256.7485116440405, 1256.7485116440403, 817.7887570959712, 451.9541780095127),
		},
		"CAM_FRONT_LEFT": {
			Translation:  [3]float64{1.5752559464, 0.500519383135, 1.50696032589},
			RotationWXYZ: [4]float64{0.6812088525125634, -0.6687507165046241, 0.2101702448905517, -0.21108161122114324},
			Intrinsic:    intrinsic(1257.8625342125129, 1257.8625342125129, 827.2410631095686, 450.915498205774),
		},
		"CAM_BACK": {
			Translation:  [3]float64{0.05524611077, 0.0107882366898, 1.56794286957},
			RotationWXYZ: [4]float64{0.5067997344989889, -0.4977567019405021, -0.4987849934090844, 0.496594225837321},
			Intrinsic:    intrinsic(796.8910634503094, 796.8910634503094, 857.7774326863696, 476.8848988407415),
		},
		"CAM_BACK_LEFT": {
			Translation:  [3]float64{1.04852047718, 0.483058131052, 1.56210154484},
			RotationWXYZ: [4]float64{0.7048620297871717, -0.6907306801461466, -0.11209091960167808, 0.11617345743327073},
			Intrinsic:    intrinsic(1254.9860565800168, 1254.9860565800168, 829.5769333630991, 467.1680561863987),
		},
		"CAM_BACK_RIGHT": {
			Translation:  [3]float64{1.05945173053, -0.46720294852, 1.55050857555},
			RotationWXYZ: [4]float64{0.13819187705364147, -0.13796718183628456, -0.6893329941542625, 0.697630335509333},
			Intrinsic:    intrinsic(1249.9629280788233, 1249.9629280788233, 825.3768045375984, 462.54816385708756),
		},
		"RADAR_FRONT": {
			Translation:  [3]float64{3.412, 0.0, 0.5},
			RotationWXYZ: [4]float64{0.9999974259839071, 0.0, 0.0, -0.0022689260808398757},
		},
		"RADAR_FRONT_LEFT": {
			Translation:  [3]float64{2.422, 0.8, 0.78},
			RotationWXYZ: [4]float64{0.7028982997921758, 0.0, 0.0, 0.7112903627557937},
		},
		"RADAR_FRONT_RIGHT": {
			Translation:  [3]float64{2.422, -0.8, 0.77},
			RotationWXYZ: [4]float64{0.7087093341000862, 0.0, 0.0, -0.7055005880645404},
		},
		"RADAR_BACK_LEFT": {
			Translation:  [3]float64{-0.562, 0.628, 0.53},
			RotationWXYZ: [4]float64{0.0458860416542946, 0.0, 0.0, 0.9989466808500344},
		},
		"RADAR_BACK_RIGHT": {
			Translation:  [3]float64{-0.562, -0.618, 0.53},
			RotationWXYZ: [4]float64{0.04361938736533623, 0.0, 0.0, -0.9990482215818578},
		},
		"LIDAR_TOP": {
			Translation:  [3]float64{0.985793, 0.0, 1.84019},
			RotationWXYZ: [4]float64{0.706749235646644, -0.015300993788500868, 0.01739745181256607, -0.7070846669051719},
		},
	}
}
