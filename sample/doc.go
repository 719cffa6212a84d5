/*
Package sample holds the Family payload used by the docstore demo and tests.

Importing the package registers "/lastName" as the partition key path of
Family, so a docstore.Client[sample.Family] partitions by last name without
further configuration.
*/
package sample
