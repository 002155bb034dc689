package request

// GraphQL documents. The service treats them as opaque strings; they are
// kept byte-stable so requests are reproducible in logs and tests.

const queryFragments = `
fragment Query on queries {
  ...BaseQuery
  ...QueryVisualizations
  ...QueryForked
  ...QueryUsers
  ...QueryFavorites
}
fragment BaseQuery on queries {
  id
  dataset_id
  name
  description
  query
  private_to_group_id
  is_temp
  is_archived
  created_at
  updated_at
  schedule
  tags
  parameters
}
fragment QueryVisualizations on queries {
  visualizations {
    id
    type
    name
    options
    created_at
  }
}
fragment QueryForked on queries {
  forked_query {
    id
    name
    user {
      name
    }
  }
}
fragment QueryUsers on queries {
  user {
    ...User
  }
}
fragment User on users {
  id
  name
  profile_image_url
}
fragment QueryFavorites on queries {
  query_favorite_count_all @include(if: $favs_all_time) {
    favorite_count
  }
  query_favorite_count_last_24h @include(if: $favs_last_24h) {
    favorite_count
  }
  query_favorite_count_last_7d @include(if: $favs_last_7d) {
    favorite_count
  }
  query_favorite_count_last_30d @include(if: $favs_last_30d) {
    favorite_count
  }
}
`

const upsertQueryDocument = `
mutation UpsertQuery(
  $session_id: Int!
  $object: queries_insert_input!
  $on_conflict: queries_on_conflict!
  $favs_last_24h: Boolean! = false
  $favs_last_7d: Boolean! = false
  $favs_last_30d: Boolean! = false
  $favs_all_time: Boolean! = true
) {
  insert_queries_one(object: $object, on_conflict: $on_conflict) {
    ...Query
    favorite_queries(where: { user_id: { _eq: $session_id } }, limit: 1) {
      created_at
    }
  }
}
` + queryFragments

const executeQueryDocument = `
mutation ExecuteQuery($query_id: Int!, $parameters: [Parameter!]!) {
  execute_query(query_id: $query_id, parameters: $parameters) {
    job_id
  }
}
`

const getResultDocument = `
query GetResult($query_id: Int!, $parameters: [Parameter!]) {
  get_result(query_id: $query_id, parameters: $parameters) {
    job_id
    result_id
  }
}
`

const findResultDataByResultDocument = `
query FindResultDataByResult($result_id: uuid!) {
  query_results(where: { id: { _eq: $result_id } }) {
    id
    job_id
    error
    runtime
    generated_at
    columns
  }
  get_result_by_result_id(args: { want_result_id: $result_id }) {
    data
  }
}
`

const findQueryDocument = `
query FindQuery(
  $session_id: Int
  $id: Int!
  $favs_last_24h: Boolean! = false
  $favs_last_7d: Boolean! = false
  $favs_last_30d: Boolean! = false
  $favs_all_time: Boolean! = true
) {
  queries(where: { id: { _eq: $id } }) {
    ...Query
    favorite_queries(where: { user_id: { _eq: $session_id } }, limit: 1) {
      created_at
    }
  }
}
` + queryFragments

const findDashboardDocument = `
query FindDashboard($session_id: Int, $user: String!, $slug: String!) {
  dashboards(where: { slug: { _eq: $slug }, user: { name: { _eq: $user } } }) {
    ...Dashboard
    favorite_dashboards(where: { user_id: { _eq: $session_id } }, limit: 1) {
      created_at
    }
  }
}
fragment Dashboard on dashboards {
  id
  name
  slug
  private_to_group_id
  is_archived
  created_at
  updated_at
  tags
  user {
    ...User
  }
  text_widgets {
    id
    created_at
    updated_at
    text
    options
  }
  visualization_widgets {
    id
    created_at
    updated_at
    options
    visualization {
      ...Visualization
    }
  }
  param_widgets {
    id
    key
    visualization_widget_id
    query_id
    dashboard_id
    options
    created_at
    updated_at
  }
  dashboard_favorite_count_all {
    favorite_count
  }
  trending_scores {
    score_1h
    score_4h
    score_24h
    updated_at
  }
}
fragment User on users {
  id
  name
  profile_image_url
}
fragment Visualization on visualizations {
  id
  type
  name
  options
  created_at
  query_details {
    query_id
    name
    description
    user_id
    user_name
    profile_image_url
    show_watermark
    parameters
  }
}
`
