// Package main provides the image classification demo: it scans a folder of
// labeled images, shuffles and splits them into train, validation and test
// sets, trains a classifier on bottleneck features and prints its predictions
// for one and for a batch of test images.
package main
