// Package registry provides the descriptor registry: a static catalog that
// maps a model name to the URL of its weight file, the robot it was trained
// for, and the hyperparameters it was built with.
//
// The registry is read from one or more YAML documents when the process
// starts and is read-only afterwards. Every entry is validated while loading
// and all problems are reported together, so a broken catalog is detected
// before any download or training work begins.
//
// A document looks like:
//
//	panda_tpm:
//	  model_weights_url: https://storage.googleapis.com/ikflow_models/panda_tpm.pkl
//	  robot_name: panda_arm
//	  nb_nodes: 12
//	  dim_latent_space: 7
//
// model_weights_url and robot_name are reserved keys. Every other key is kept
// as an untyped hyperparameter field and is only checked for being a
// primitive value here; typing happens in package hparams.
package registry
