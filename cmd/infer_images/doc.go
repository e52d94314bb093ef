// Package main classifies images with a model saved by train_images and
// prints one prediction line per image. Images are the arguments, or every
// image under -assets labeled the same way train_images labels them.
package main
